package provider

type VideoResult struct {
	Title           string `json:"title"`
	Channel         string `json:"channel"`
	SourceURL       string `json:"sourceUrl"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	VideoID         string `json:"videoId"`
}

type SearchResponse struct {
	Items []VideoResult `json:"items"`
}
