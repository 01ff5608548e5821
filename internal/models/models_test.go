package models

import (
	"encoding/json"
	"testing"
)

func TestOrientationDimensions(t *testing.T) {
	cases := []struct {
		o      Orientation
		w, h   int
		wantOK bool
	}{
		{OrientationHorizontal, 1920, 1080, true},
		{OrientationVertical, 1080, 1920, true},
		{"square", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tc := range cases {
		w, h, ok := tc.o.Dimensions()
		if w != tc.w || h != tc.h || ok != tc.wantOK {
			t.Errorf("%q.Dimensions() = (%d, %d, %v), want (%d, %d, %v)", tc.o, w, h, ok, tc.w, tc.h, tc.wantOK)
		}
		if tc.o.Valid() != tc.wantOK {
			t.Errorf("%q.Valid() = %v", tc.o, tc.o.Valid())
		}
	}
}

func TestGenerateVideoRequestDecodesClientPayload(t *testing.T) {
	payload := `{
		"scenes": [
			{"time": "0-5 seconds", "imageUrl": "http://localhost:8000/static/images/a.webp", "audioUrl": "/static/audio/a.mp3", "voiceover": "Hello"}
		],
		"orientation": "vertical",
		"isRecreate": true
	}`

	var req GenerateVideoRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}

	if len(req.Scenes) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(req.Scenes))
	}
	if req.Scenes[0].ImageURL == "" || req.Scenes[0].AudioURL == "" {
		t.Errorf("scene urls not decoded: %+v", req.Scenes[0])
	}
	if req.Orientation != OrientationVertical || !req.IsRecreate {
		t.Errorf("unexpected request flags: %+v", req)
	}
}

func TestVideoResponseFieldNames(t *testing.T) {
	resp := GenerateVideoResponse{
		VideoURL: "/static/videos/v.mp4",
		Details: VideoDetails{
			Resolution:  "1920x1080",
			Quality:     "High",
			Scenes:      2,
			HasCaptions: true,
			Duration:    10,
			Orientation: OrientationHorizontal,
		},
		RemainingGenerations: 1,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"videoUrl", "details", "remainingGenerations"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	details := raw["details"].(map[string]any)
	if details["hasCaptions"] != true || details["resolution"] != "1920x1080" {
		t.Errorf("unexpected details %v", details)
	}
}
