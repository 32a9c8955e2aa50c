package call

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/celsofranciscano/innotech/core"
)

var (
	submissionWindowTag  = "submissionwindow"
	submissionWindowText = "la fecha de cierre debe ser posterior a la fecha de apertura"

	teamSizeTag  = "teamsize"
	teamSizeText = "el mínimo de integrantes no puede superar al máximo"
)

// InitValidators registers the call validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(callStructValidation, NewCall{})
	core.RegisterCustomTranslation(validate, translator, submissionWindowTag, submissionWindowText)
	core.RegisterCustomTranslation(validate, translator, teamSizeTag, teamSizeText)
}

// callStructValidation checks the submission window ordering and the team size bounds.
func callStructValidation(sl validator.StructLevel) {
	nc, ok := sl.Current().Interface().(NewCall)
	if !ok {
		return
	}
	if nc.SubmissionOpen != nil && nc.SubmissionClose != nil && !nc.SubmissionOpen.Before(*nc.SubmissionClose) {
		sl.ReportError(nc.SubmissionClose, "submissionClose", "SubmissionClose", submissionWindowTag, "")
	}
	if nc.MinTeamMembers != nil && nc.MaxTeamMembers != nil && *nc.MinTeamMembers > *nc.MaxTeamMembers {
		sl.ReportError(nc.MaxTeamMembers, "maxTeamMembers", "MaxTeamMembers", teamSizeTag, "")
	}
}
