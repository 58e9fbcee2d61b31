package cas

import "encoding/json"

// ChunkRef is one entry in a manifest's ordered chunk list.
type ChunkRef struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Manifest describes a chunked object: the chunk_size used to split it and
// the ordered chunk hashes needed to reassemble file_hash's bytes.
type Manifest struct {
	FileHash  string     `json:"file_hash"`
	FileSize  int64      `json:"file_size"`
	ChunkSize int64      `json:"chunk_size"`
	Chunks    []ChunkRef `json:"chunks"`
}

func (m *Manifest) marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func unmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
