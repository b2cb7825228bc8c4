package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/server/models"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, common.MalformedError(fmt.Sprintf("read body: %v", err))
	}
	return data, nil
}

func (s *Server) decodeCBOR(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := s.readBody(w, r)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return common.MalformedError(err.Error())
	}
	return nil
}

func writeOutcome(err error) string {
	var (
		stale     *common.StaleError
		forbidden *common.ForbiddenError
	)
	switch {
	case err == nil:
		return "applied"
	case errors.As(err, &stale):
		return "stale"
	case errors.As(err, &forbidden):
		return "forbidden"
	case errors.Is(err, common.ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}

func (s *Server) handleBatchPut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := s.readBody(w, r)
	if err == nil {
		var records []wire.Record
		if records, err = wire.DecodeBatch(data); err == nil {
			err = s.services.Content.BatchPut(ctx, userIDFromContext(ctx), records)
		}
	}
	s.metrics.contentWrites.WithLabelValues(writeOutcome(err)).Inc()

	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBatchGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ids [][]byte
	if err := s.decodeCBOR(w, r, &ids); err != nil {
		s.metrics.contentReads.WithLabelValues("malformed").Inc()
		s.writeError(w, r, err)
		return
	}

	objects, err := s.services.Content.BatchGet(ctx, userIDFromContext(ctx), ids)
	if err != nil {
		var missing *common.MissingError
		s.metrics.contentReads.WithLabelValues(lo.Ternary(errors.As(err, &missing), "missing", "error")).Inc()
		s.writeError(w, r, err)
		return
	}

	s.metrics.contentReads.WithLabelValues("ok").Inc()
	s.writeCBOR(w, r, http.StatusOK, objects)
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.services.Follows.Grant(ctx, userIDFromContext(ctx), mux.Vars(r)["followerId"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.services.Follows.Revoke(ctx, userIDFromContext(ctx), mux.Vars(r)["followerId"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SendMessageRequest
	if err := s.decodeCBOR(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.services.Messages.Send(ctx, userIDFromContext(ctx), req.Payload, req.Recipients)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeCBOR(w, r, http.StatusCreated, api.SendMessageResponse{ID: id})
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	msgs, err := s.services.Messages.Receive(ctx, userIDFromContext(ctx))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := lo.Map(msgs, func(m *models.Message, _ int) api.Message {
		return api.Message{ID: m.ID, SenderID: m.SenderID, Payload: m.Payload, CreatedAt: m.CreatedAt}
	})
	s.writeCBOR(w, r, http.StatusOK, out)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.AckRequest
	if err := s.decodeCBOR(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Messages.Ack(ctx, userIDFromContext(ctx), req.IDs); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	image, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.services.Avatars.Put(ctx, userIDFromContext(ctx), r.Header.Get("Content-Type"), image); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	contentType, image, err := s.services.Avatars.Get(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}
