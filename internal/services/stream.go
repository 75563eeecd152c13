package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/sporttrack/internal/models"
	"github.com/desertthunder/sporttrack/internal/shared"
)

// StreamProgress subscribes to /ws/progress/{id} and calls fn for every pushed report.
//
// It returns nil once a report with a terminal stage arrives, ctx.Err() when ctx is done, and an error
// wrapping [shared.ErrProgressFailed] when the stream cannot be opened or breaks.
func (s *SportTrackService) StreamProgress(ctx context.Context, videoID string, fn func(models.ProgressReport)) error {
	target, err := streamURL(s.api.BaseURL(), "/ws/progress/"+url.PathEscape(videoID))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProgressFailed, err)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &StatusError{Op: "stream progress", StatusCode: resp.StatusCode, Message: "Failed to get progress", Kind: shared.ErrProgressFailed}
		}
		return fmt.Errorf("%w: %v", shared.ErrProgressFailed, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var report models.ProgressReport
		if err := conn.ReadJSON(&report); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", shared.ErrProgressFailed, err)
		}

		fn(report)
		if report.Done() {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

// streamURL maps an http(s) base URL onto the matching ws(s) scheme.
func streamURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	return strings.TrimRight(u.String(), "/") + path, nil
}
