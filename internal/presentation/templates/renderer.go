// Package templates renders the booking site's pages.
package templates

import (
	"bytes"
	"fmt"

	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
)

// Renderer executes the page templates.
type Renderer struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewRenderer creates a new page renderer
func NewRenderer(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *Renderer {
	return &Renderer{
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// RenderPage renders a full HTML document for data.
func (r *Renderer) RenderPage(data *PageData, requestID string) ([]byte, error) {
	marker := r.perfTracker.StartOperation("render_"+data.Page, requestID)
	defer r.perfTracker.CompleteOperation(marker)

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "layout", data); err != nil {
		marker.SetError(err)
		r.logger.Render().Error("Page render failed", "page", data.Page, "error", err, "requestId", requestID)
		return nil, fmt.Errorf("failed to render page %s: %w", data.Page, err)
	}

	marker.AddMetadata("bytes", buf.Len())
	r.logger.Render().Debug("Page rendered", "page", data.Page, "bytes", buf.Len(), "requestId", requestID)
	return buf.Bytes(), nil
}
