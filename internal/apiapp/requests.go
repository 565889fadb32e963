package apiapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type buildRequest struct {
	Start        string `json:"start" validate:"required,datetime=2006-01-02"`
	HorizonWeeks int    `json:"horizonWeeks" validate:"omitempty,min=1,max=12"`
}

type settingsRequest struct {
	IncludeDelivery *bool `json:"includeDelivery" validate:"required"`
}

type addSlotRequest struct {
	Role      string `json:"role" validate:"required,max=80"`
	Start     string `json:"start" validate:"required,datetime=15:04"`
	End       string `json:"end" validate:"required,datetime=15:04"`
	Category  string `json:"category" validate:"omitempty,oneof=opener closer support"`
	Headcount int    `json:"headcount" validate:"required,min=1,max=6"`
}

type updateSlotRequest struct {
	Headcount   *int     `json:"headcount" validate:"omitempty,min=1,max=6"`
	Assignments []string `json:"assignments" validate:"omitempty,max=6,dive,max=80"`
}

type noteRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type copyDayRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
}

type dayRequestBody struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type decisionRequest struct {
	Approved *bool  `json:"approved" validate:"required"`
	Reviewer string `json:"reviewer" validate:"max=80"`
}

type profileRequest struct {
	Profile string `json:"profile" validate:"required,oneof=baseline conservative aggressive"`
}

type thresholdRequest struct {
	Value *float64 `json:"value" validate:"required"`
}

// decodeAndValidate reads a JSON body into dst and checks its validate tags.
// On failure it writes a 400 and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		fields := make(map[string]string, len(errs))
		for _, fe := range errs {
			fields[strings.ToLower(fe.Field()[:1])+fe.Field()[1:]] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request", "fields": fields})
		return false
	}
	return true
}
