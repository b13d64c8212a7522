package models

import (
	"fmt"
	"time"
)

// Folder groups uploads and carries their processing defaults
type Folder struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	Name              string    `json:"name" db:"name"`
	DefaultLoopCount  int       `json:"default_loop_count" db:"default_loop_count"`
	DefaultReverse    bool      `json:"default_reverse" db:"default_reverse"`
	CaptionTemplateID *string   `json:"caption_template_id,omitempty" db:"caption_template_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// StoragePath returns the directory finished media of this folder is persisted under
func (f *Folder) StoragePath() string {
	return fmt.Sprintf("media/%s/%s", f.UserID, f.ID)
}

// FolderSettings drives content generation for a folder
type FolderSettings struct {
	FolderID      string    `json:"folder_id" db:"folder_id"`
	Tone          string    `json:"tone" db:"tone"`
	Language      string    `json:"language" db:"language"`
	HashtagCount  int       `json:"hashtag_count" db:"hashtag_count"`
	IncludeEmojis bool      `json:"include_emojis" db:"include_emojis"`
	CustomPrompt  string    `json:"custom_prompt,omitempty" db:"custom_prompt"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Default folder settings
const (
	DefaultSettingsTone         = "engaging"
	DefaultSettingsLanguage     = "en"
	DefaultSettingsHashtagCount = 5
)

// DefaultFolderSettings returns the settings a folder gets before it is configured
func DefaultFolderSettings(folderID string) *FolderSettings {
	return &FolderSettings{
		FolderID:      folderID,
		Tone:          DefaultSettingsTone,
		Language:      DefaultSettingsLanguage,
		HashtagCount:  DefaultSettingsHashtagCount,
		IncludeEmojis: true,
	}
}
