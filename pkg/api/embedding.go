package api

// EmbeddingRequest is the request body for /v1/embeddings. Input is a
// string or a list of strings.
type EmbeddingRequest struct {
	Model          string `json:"model"`
	Input          any    `json:"input"`
	EncodingFormat string `json:"encoding_format,omitempty"`
	Dimensions     *int   `json:"dimensions,omitempty"`
	User           string `json:"user,omitempty"`
}

// Embedding is one embedding vector.
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingResponse is the response from /v1/embeddings.
type EmbeddingResponse struct {
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  *Usage      `json:"usage,omitempty"`

	Extra *Fields `json:"-"`
}

// UnmarshalJSON decodes the response and keeps unknown members in Extra.
func (r *EmbeddingResponse) UnmarshalJSON(data []byte) error {
	type plain EmbeddingResponse
	extra, err := decodeObject(data, (*plain)(r))
	if err != nil {
		return err
	}
	r.Extra = extra
	return nil
}
