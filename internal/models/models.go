package models

import (
	"time"

	"github.com/google/uuid"
)

// Enums
type Orientation string

const (
	OrientationHorizontal Orientation = "horizontal"
	OrientationVertical   Orientation = "vertical"
)

// Dimensions returns the output frame size for the orientation.
func (o Orientation) Dimensions() (width, height int, ok bool) {
	switch o {
	case OrientationHorizontal:
		return 1920, 1080, true
	case OrientationVertical:
		return 1080, 1920, true
	default:
		return 0, 0, false
	}
}

// Valid reports whether o is a supported orientation.
func (o Orientation) Valid() bool {
	_, _, ok := o.Dimensions()
	return ok
}

// Models

// Scene is one unit of the output video as supplied by the client.
type Scene struct {
	ID        int    `json:"id,omitempty"`
	Time      string `json:"time"` // "start-end" in seconds, e.g. "0-5 seconds"
	ImageURL  string `json:"imageUrl"`
	AudioURL  string `json:"audioUrl"`
	Voiceover string `json:"voiceover,omitempty"`
	Visual    string `json:"visual,omitempty"`
}

// ScriptScene is a scene parsed out of a written script.
type ScriptScene struct {
	ID        int    `json:"id"`
	Time      string `json:"time"`
	Visual    string `json:"visual"`
	Voiceover string `json:"voiceover"`
}

// Video is one row of assembly history.
type Video struct {
	ID              uuid.UUID   `json:"id"`
	FileName        string      `json:"file_name"`
	VideoURL        string      `json:"video_url"`
	Orientation     Orientation `json:"orientation"`
	SceneCount      int         `json:"scene_count"`
	DurationSeconds int         `json:"duration_seconds"`
	HasCaptions     bool        `json:"has_captions"`
	ClientID        string      `json:"client_id"`
	Recreate        bool        `json:"recreate"`
	CreatedAt       time.Time   `json:"created_at"`
}

// DTOs for API requests and responses

type GenerateImageRequest struct {
	Prompt string `json:"prompt"`
}

type GenerateImageResponse struct {
	ImageURL  string `json:"imageUrl"`
	ImagePath string `json:"imagePath"`
}

type GenerateVoiceRequest struct {
	Text string `json:"text"`
}

type GenerateVoiceResponse struct {
	AudioURL    string `json:"audioUrl"`
	AudioPath   string `json:"audioPath"`
	SceneNumber string `json:"sceneNumber"`
}

type GenerateVideoRequest struct {
	Scenes      []Scene     `json:"scenes"`
	Orientation Orientation `json:"orientation,omitempty"` // Default: horizontal
	IsRecreate  bool        `json:"isRecreate,omitempty"`
}

type VideoDetails struct {
	Resolution  string      `json:"resolution"`
	Quality     string      `json:"quality"`
	Scenes      int         `json:"scenes"`
	HasCaptions bool        `json:"hasCaptions"`
	Duration    int         `json:"duration"`
	Orientation Orientation `json:"orientation"`
}

type GenerateVideoResponse struct {
	VideoURL             string       `json:"videoUrl"`
	Details              VideoDetails `json:"details"`
	RemainingGenerations int          `json:"remainingGenerations"`
}

type GenerateScriptRequest struct {
	Topic    string `json:"topic"`
	Duration int    `json:"duration"` // Target length in seconds
}

type GenerateScriptResponse struct {
	Content string `json:"content"`
}

type ProcessScriptRequest struct {
	Text string `json:"text"`
}

type ProcessScriptResponse struct {
	Scenes []ScriptScene `json:"scenes"`
}

// SceneRecord is a ledger entry as exposed over HTTP.
type SceneRecord struct {
	Scene string `json:"scene"`
	Image string `json:"image,omitempty"`
	Audio string `json:"audio,omitempty"`
}

type ListScenesResponse struct {
	Scenes []SceneRecord `json:"scenes"`
}

type ListVideosResponse struct {
	Videos []Video `json:"videos"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
