package shared

import (
	"context"
	"log/slog"
	"net/http"
)

// commitWriter persists the session right before the first header write so
// the Set-Cookie header still reaches the client.
type commitWriter struct {
	http.ResponseWriter
	ctx       context.Context
	sess      *Session
	manager   *SessionManager
	logger    *slog.Logger
	committed bool
}

func (w *commitWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil && w.logger != nil {
		w.logger.Error("commit session", slog.Any("error", err))
	}
}

func (w *commitWriter) WriteHeader(statusCode int) {
	w.commit()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(data)
}

func (w *commitWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware loads the session into the request context and commits it with
// the response.
func (sm *SessionManager) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := sm.Load(ctx, r)
			if err != nil {
				if logger != nil {
					logger.Error("failed to load session", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx = ContextWithSession(ctx, sess)
			wrapped := &commitWriter{ResponseWriter: w, ctx: ctx, sess: sess, manager: sm, logger: logger}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
			wrapped.commit()
		})
	}
}
