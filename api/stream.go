package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// stream pushes a board snapshot on connect and after every board change,
// interleaved with the user's notifications.
func (h *handler) stream(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	changes, stopChanges := b.Changes()
	defer stopChanges()
	notes, stopNotes := h.notes.Subscribe(b.UserID())
	defer stopNotes()

	send := func(event string, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("event: " + event + "\ndata: ")); err != nil {
			return err
		}
		if _, err := resp.Write(data); err != nil {
			return err
		}
		if _, err := resp.Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ctx := c.Request().Context()
	if err := send("board", b.Snapshot()); err != nil {
		log.WithError(err).Debug("stream closed")
		return nil
	}
	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			err = send("board", b.Snapshot())
		case n := <-notes:
			err = send("notification", n)
		}
		if err != nil {
			log.WithError(err).Debug("stream closed")
			return nil
		}
	}
}
