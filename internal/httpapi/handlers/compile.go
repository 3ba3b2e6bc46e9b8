package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"typstapi/internal/compiler"
	"typstapi/internal/httpkit"
	"typstapi/internal/pkg/errors"
)

// CompileRequest is the body of POST /api/typst/compile.
type CompileRequest struct {
	Template  *string           `json:"template" validate:"required" example:"Hello, #sys.inputs.name!"`
	Variables map[string]string `json:"variables,omitempty"`
	Jobs      *int              `json:"jobs,omitempty"`
}

// Compile godoc
// @ID           compileTypst
// @Summary      Compile a Typst template to PDF
// @Tags         typst
// @Accept       json
// @Produce      application/pdf
// @Param        request body CompileRequest true "Template and inputs"
// @Success      200 {file} binary
// @Failure      400 {object} httpkit.ErrorBody
// @Failure      413 {object} httpkit.ErrorBody
// @Failure      429 {object} httpkit.ErrorBody
// @Failure      500 {object} httpkit.ErrorBody
// @Failure      504 {object} httpkit.ErrorBody
// @Router       /api/typst/compile [post]
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req CompileRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return decodeError(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	pdf, err := h.compiler.Compile(ctx, compiler.Request{
		Template:  *req.Template,
		Variables: req.Variables,
		Jobs:      req.Jobs,
	})
	if err != nil {
		return err
	}

	if err := httpkit.WriteBytes(w, http.StatusOK, compiler.ContentType, pdf); err != nil {
		h.log.FromContext(ctx).Debug("response write failed", "error", err.Error(), "bytes", len(pdf))
	}
	return nil
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.Newf(errors.CodeTooLarge, "request body exceeds %d bytes", maxErr.Limit)
	}
	return errors.WrapWithCode(err, errors.CodeBadRequest, "httpapi.decode", "invalid JSON body: "+err.Error())
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Validation("invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return errors.ValidationField(fe.Field(), fe.Field()+" is required")
	default:
		return errors.ValidationField(fe.Field(), fe.Field()+" is invalid")
	}
}
