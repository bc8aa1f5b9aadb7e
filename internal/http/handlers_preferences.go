package http

import (
	"io"
	"mime"
	"net/http"

	"budgetwise/internal/core"
)

type categoryInfo struct {
	Name   string              `json:"name"`
	Visual core.CategoryVisual `json:"visual"`
}

func categoryList(t core.TxType) []categoryInfo {
	names := core.CategoriesFor(t)
	out := make([]categoryInfo, 0, len(names))
	for _, n := range names {
		out = append(out, categoryInfo{Name: n, Visual: core.VisualFor(n)})
	}
	return out
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]categoryInfo{
		string(core.Income):  categoryList(core.Income),
		string(core.Expense): categoryList(core.Expense),
	})
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Currencies)
}

// handleMe returns the token identity together with the user's preferences.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	prefs, err := s.prefs.Get(r.Context(), u.UID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User        *core.User           `json:"user"`
		Preferences core.UserPreferences `json:"preferences"`
	}{u, prefs})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.prefs.Get(r.Context(), currentUser(r).UID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePatchPreferences(w http.ResponseWriter, r *http.Request) {
	var patch core.PreferencesPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if patch.DisplayName != nil {
		name := sanitizeInput(*patch.DisplayName)
		patch.DisplayName = &name
	}
	res := s.prefs.Update(r.Context(), currentUser(r).UID, patch)
	if !res.OK() {
		s.fail(w, r, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

// handlePutAvatar stores the raw image body as the profile picture. The
// Content-Type header names the image type; an empty body removes the avatar.
func (s *Server) handlePutAvatar(w http.ResponseWriter, r *http.Request) {
	// One byte over the limit is enough for validation to reject it.
	data, err := io.ReadAll(io.LimitReader(r.Body, core.MaxAvatarBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "could not read avatar")
		return
	}

	var avatar *core.Avatar
	if len(data) > 0 {
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		avatar = &core.Avatar{ContentType: ct, Data: data}
	}
	res := s.prefs.SetAvatar(r.Context(), currentUser(r).UID, avatar)
	if !res.OK() {
		s.fail(w, r, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}
