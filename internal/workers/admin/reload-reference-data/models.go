// internal/workers/admin/reload-reference-data/models.go
package reloadreferencedata

type Input struct{}

type Output struct {
	Version     int64  `json:"version"`
	LoadedAt    string `json:"loadedAt"`
	Source      string `json:"source"`
	Occupations int    `json:"occupations"`
	Skills      int    `json:"skills"`
	Programs    int    `json:"programs"`
	Chunks      int    `json:"chunks"`
}
