// -----------------------------------------------------------------------
// Artifact Inspector - pre-flight PDF inspection before remote upload
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package inspect

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/interfaces"
)

// Inspector implements the ArtifactInspector interface using pdfcpu.
// It never ships anything anywhere: the point is to fail obviously
// unprocessable uploads locally instead of burning a remote submission.
type Inspector struct {
	conf   *model.Configuration
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.ArtifactInspector = (*Inspector)(nil)

// NewInspector creates a new artifact inspector.
func NewInspector(logger arbor.ILogger) *Inspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Inspector{
		conf:   conf,
		logger: logger,
	}
}

// Inspect parses the document and returns its basic properties. Password
// protection is reported via the Encrypted flag rather than an error so
// callers can produce a precise rejection message.
func (i *Inspector) Inspect(ctx context.Context, data []byte) (*interfaces.ArtifactInfo, error) {
	info := &interfaces.ArtifactInfo{FileSize: int64(len(data))}

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), i.conf)
	if err != nil {
		if isEncryptionError(err) {
			info.Encrypted = true
			return info, nil
		}
		i.logger.Debug().Err(err).Msg("PDF inspection failed")
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	info.PageCount = pdfCtx.PageCount
	return info, nil
}

// isEncryptionError sniffs pdfcpu's password/encryption failures. pdfcpu
// does not expose a typed error for these, so the message is all we have.
func isEncryptionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}
