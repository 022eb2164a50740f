// -----------------------------------------------------------------------
// Artifact Inspector Interface - pre-flight inspection of uploads
// -----------------------------------------------------------------------

package interfaces

import "context"

// ArtifactInfo contains lightweight facts about an uploaded document.
type ArtifactInfo struct {
	PageCount int   `json:"page_count"`
	FileSize  int64 `json:"file_size"`
	Encrypted bool  `json:"encrypted"`
}

// ArtifactInspector checks an artifact before it is shipped to the remote
// processor so obviously unprocessable payloads fail fast locally.
type ArtifactInspector interface {
	// Inspect parses the document and returns basic properties. An error
	// means the payload is not a readable document of the claimed type.
	Inspect(ctx context.Context, data []byte) (*ArtifactInfo, error)
}
