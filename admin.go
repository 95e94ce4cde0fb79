package argot

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *App) handleSignup(c echo.Context) error {
	var req credentialsRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := a.Store.CreateUser(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotWhitelisted):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrUserExists):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}
	if err := setSessionValue(c, "user", user.Name); err != nil {
		return err
	}
	a.Log.Info().Str("user", user.Name).Msg("signup")
	return c.JSON(http.StatusCreated, map[string]string{"username": user.Name})
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	var req credentialsRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := a.Store.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			a.loginLimiter.Record(ip)
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	if err := setSessionValue(c, "user", user.Name); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"username": user.Name})
}

func handleLogout(c echo.Context) error {
	if err := clearSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	var req adminLoginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		return echo.NewHTTPError(http.StatusUnauthorized, "wrong admin password")
	}
	if err := setSessionValue(c, "admin", true); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleCreateTag(c echo.Context) error {
	var req newTagRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	tag, err := a.Store.CreateTag(c.Request().Context(), req.Name)
	if err != nil {
		if errors.Is(err, ErrTagExists) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}
	a.Cache.Invalidate()
	a.Log.Info().Str("tag", tag.Name).Msg("tag created")
	return c.JSON(http.StatusCreated, tag)
}

func (a *App) handleWhitelist(c echo.Context) error {
	var req whitelistRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := a.Store.AddToWhitelist(c.Request().Context(), req.Username); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
