package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tentatek/internal/back"
	"tentatek/internal/util"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"
)

func urlUUID(r *http.Request, name string) (util.UUIDAsBlob, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return util.UUIDAsBlob{}, err
	}

	return util.UUIDAsBlob(id), nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}

	return strconv.Atoi(v)
}

type reportPayload struct {
	ReporterID int64              `json:"reporterId"`
	Winners    []back.ReportedMap `json:"winners"`
	Weapons    []back.WeaponPick  `json:"weapons"`
}

// postMatchReport is the boundary of the report protocol: the winners array
// is validated here, the protocol itself assumes well-formed input.
func (s *Server) postMatchReport(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlUUID(r, "id")
	if err != nil {
		s.error(w, err, http.StatusNotFound)
		return
	}

	var payload reportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.error(w, err, http.StatusBadRequest)
		return
	}

	if len(payload.Winners) > 0 {
		match, err := s.back.GetMatch(matchID)
		if err != nil {
			s.error(w, err, http.StatusNotFound)
			return
		}

		if err := back.ValidateWinnerSequence(
			match.BestOf,
			[2]int64{match.Sides[0].GroupID, match.Sides[1].GroupID},
			payload.Winners,
		); err != nil {
			s.error(w, err, http.StatusUnprocessableEntity)
			return
		}
	}

	outcome, err := s.back.ReportScore(matchID, payload.ReporterID, payload.Winners, payload.Weapons)
	if err != nil {
		s.error(w, err, http.StatusInternalServerError)
		return
	}

	s.response(w, http.StatusOK, outcome)
}

type cancelPayload struct {
	ReporterID int64 `json:"reporterId"`
}

func (s *Server) postMatchCancel(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlUUID(r, "id")
	if err != nil {
		s.error(w, err, http.StatusNotFound)
		return
	}

	var payload cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.error(w, err, http.StatusBadRequest)
		return
	}

	outcome, err := s.back.CancelMatch(matchID, payload.ReporterID)
	if err != nil {
		s.error(w, err, http.StatusInternalServerError)
		return
	}

	s.response(w, http.StatusOK, outcome)
}

func (s *Server) postMatchLock(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlUUID(r, "id")
	if err != nil {
		s.error(w, err, http.StatusNotFound)
		return
	}

	if err := s.back.LockMatchWithoutSkillChange(matchID); err != nil {
		s.error(w, err, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type summarizePayload struct {
	Season      int    `json:"season"`
	SeedingType string `json:"seedingType"`
	Standings   []struct {
		GroupID            int64   `json:"groupId"`
		Placement          int     `json:"placement"`
		Members            []int64 `json:"members"`
		StartingBracketIdx *int64  `json:"startingBracketIdx"`
	} `json:"standings"`
	Progression    []string `json:"progression"`
	BadgeReceivers []struct {
		BadgeID int64   `json:"badgeId"`
		UserIDs []int64 `json:"userIds"`
	} `json:"badgeReceivers"`
}

func (s *Server) postTournamentSummarize(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlUUID(r, "id")
	if err != nil {
		s.error(w, err, http.StatusNotFound)
		return
	}

	var payload summarizePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.error(w, err, http.StatusBadRequest)
		return
	}

	seedingType := back.SeedingType(payload.SeedingType)
	if seedingType != back.SeedingRanked && seedingType != back.SeedingUnranked {
		s.error(w, util.ErrPublic("seedingType must be RANKED or UNRANKED"), http.StatusBadRequest)
		return
	}

	standings := make([]back.Standing, 0, len(payload.Standings))
	for _, v := range payload.Standings {
		standing := back.Standing{
			GroupID:   v.GroupID,
			Placement: v.Placement,
			Members:   v.Members,
		}
		if v.StartingBracketIdx != nil {
			standing.StartingBracketIdx = null.IntFrom(*v.StartingBracketIdx)
		}

		standings = append(standings, standing)
	}

	progression := make([]back.Division, 0, len(payload.Progression))
	for _, name := range payload.Progression {
		progression = append(progression, back.Division{Name: name})
	}

	badgeReceivers := make(map[int64][]int64, len(payload.BadgeReceivers))
	for _, v := range payload.BadgeReceivers {
		badgeReceivers[v.BadgeID] = append(badgeReceivers[v.BadgeID], v.UserIDs...)
	}

	if err := s.back.SummarizeTournament(
		tournamentID, payload.Season, seedingType,
		standings, progression, badgeReceivers,
	); err != nil {
		s.error(w, err, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
