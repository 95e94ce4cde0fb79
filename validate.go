package argot

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var reTagName = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidTagName reports whether name can be registered as a tag.
func ValidTagName(name string) bool {
	return reTagName.MatchString(name)
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	_ = v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
		return ValidTagName(fl.Field().String())
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
			}
		} else {
			msgs = append(msgs, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Type check failed: "+strings.Join(msgs, ", "))
	}
	return nil
}

// bindValid binds the request into req and validates it.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

// Request bodies. Field tags drive both binding and validation.

type newPostRequest struct {
	Title   string   `json:"title" form:"title" validate:"max=300"`
	Link    string   `json:"link" form:"link" validate:"omitempty,url,max=2048"`
	Content string   `json:"content" form:"content" validate:"max=40000"`
	Tags    []string `json:"tags" form:"tags" validate:"max=32,dive,tagname"`
}

type attachTagsRequest struct {
	Tags []string `json:"tags" form:"tags" validate:"required,min=1,max=32,dive,tagname"`
}

type newCommentRequest struct {
	Content string `json:"content" form:"content" validate:"required,max=10000"`
	Parent  string `json:"parent" form:"parent" validate:"omitempty,uuid"`
}

type newTagRequest struct {
	Name string `json:"name" form:"name" validate:"required,max=64,tagname"`
}

type credentialsRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=2,max=32,alphanum"`
	Password string `json:"password" form:"password" validate:"required,min=8,max=72"`
}

type whitelistRequest struct {
	Username string `json:"username" form:"username" validate:"required,min=2,max=32,alphanum"`
}

type adminLoginRequest struct {
	Password string `json:"password" form:"password" validate:"required"`
}
