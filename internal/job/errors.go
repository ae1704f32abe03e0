package job

import (
	"context"
	"errors"
	"io/fs"

	"github.com/maauso/firstcut/internal/audio"
	"github.com/maauso/firstcut/internal/cut"
	"github.com/maauso/firstcut/internal/storage"
	"github.com/maauso/firstcut/internal/timeline"
)

// ErrInvalidInput is returned when a cut request names no timeline.
var ErrInvalidInput = errors.New("invalid cut input")

// Error codes reported for failed jobs.
const (
	CodeMalformedTimeline      = "MALFORMED_TIMELINE"
	CodeTimelineUnreadable     = "TIMELINE_UNREADABLE"
	CodeMediaUnavailable       = "MEDIA_UNAVAILABLE"
	CodeUnsupportedTrackLayout = "UNSUPPORTED_TRACK_LAYOUT"
	CodeEmptyCutPlan           = "EMPTY_CUT_PLAN"
	CodeInvalidSettings        = "INVALID_SETTINGS"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeOutputLocked           = "OUTPUT_LOCKED"
	CodeS3NotConfigured        = "S3_NOT_CONFIGURED"
	CodeCancelled              = "CANCELLED"
	CodeInternal               = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{timeline.ErrMalformedTimeline, CodeMalformedTimeline},
	{audio.ErrMediaUnavailable, CodeMediaUnavailable},
	{timeline.ErrUnsupportedTrackLayout, CodeUnsupportedTrackLayout},
	{cut.ErrEmptyCutPlan, CodeEmptyCutPlan},
	{cut.ErrInvalidSettings, CodeInvalidSettings},
	{ErrInvalidInput, CodeInvalidInput},
	{storage.ErrLocked, CodeOutputLocked},
	{storage.ErrS3NotConfigured, CodeS3NotConfigured},
	{fs.ErrNotExist, CodeTimelineUnreadable},
	{fs.ErrPermission, CodeTimelineUnreadable},
	{context.Canceled, CodeCancelled},
}

// ErrorCode maps err to a stable code for API and CLI output. Media errors
// take precedence over the file system errors they wrap.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
