package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pereirasil/corrida-app-sub000/internal/arbiter"
	"github.com/pereirasil/corrida-app-sub000/internal/httputil"
	"github.com/pereirasil/corrida-app-sub000/internal/playback"
	"github.com/pereirasil/corrida-app-sub000/internal/tracker"
)

var validate = validator.New()

// ResourcesResponse lists active registrations and the player state.
type ResourcesResponse struct {
	Active       []arbiter.Registration `json:"active"`
	HasConflicts bool                   `json:"has_conflicts"`
	CanPlayMusic bool                   `json:"can_play_music"`
	Music        playback.Status        `json:"music"`
}

func (s *Server) showResources(w http.ResponseWriter, r *http.Request) {
	active := s.arbiter.Registrations()
	if active == nil {
		active = []arbiter.Registration{}
	}
	httputil.WriteJSONOK(w, ResourcesResponse{
		Active:       active,
		HasConflicts: s.arbiter.HasActiveConflicts(),
		CanPlayMusic: s.arbiter.CanActivate(arbiter.Music, arbiter.MusicPlayback),
		Music:        s.player.Status(),
	})
}

type playRequest struct {
	Track string `json:"track" validate:"required,max=256"`
}

func (s *Server) playMusic(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.BadRequest(w, "track is required")
		return
	}
	if err := s.player.Play(req.Track); err != nil {
		var blocked *playback.BlockedError
		if errors.As(err, &blocked) {
			httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorBody{
				Error:     blocked.Error(),
				Kind:      string(tracker.KindResourceConflict),
				Hint:      blocked.Hint(),
				Conflicts: conflictNames(blocked.Holders),
			})
			return
		}
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.player.Status())
}

func (s *Server) stopMusic(w http.ResponseWriter, r *http.Request) {
	s.player.Stop()
	httputil.WriteJSONOK(w, s.player.Status())
}
