package handler

import (
	"net/http"

	"dealboard/internal/captcha"
	"dealboard/internal/model"
)

type CaptchaHandler struct {
	store captcha.Store
}

func NewCaptchaHandler(store captcha.Store) *CaptchaHandler {
	return &CaptchaHandler{store: store}
}

// Issue mints a fresh challenge. Unauthenticated by design: the login
// form needs one before any credentials exist.
func (h *CaptchaHandler) Issue(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.store.Issue()
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ChallengeResponse{
		ChallengeID:  challenge.ID,
		CaptchaImage: challenge.ImagePNG,
		ExpiresIn:    int64(challenge.ExpiresIn.Seconds()),
	}, nil)
}
