package ban

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclass/dbans/internal/discussion"
	"github.com/openclass/dbans/internal/httphelper"
	"github.com/openclass/dbans/internal/person"
)

type banHandler struct {
	bans Bans
}

func NewHandler(engine *gin.Engine, bans Bans, authenticator httphelper.Authenticator) {
	handler := banHandler{bans: bans}

	modGrp := engine.Group("/")
	{
		mod := modGrp.Use(authenticator.Middleware())
		mod.POST("/api/moderation/ban", handler.onBanCreate())
		mod.GET("/api/moderation/banned/:course_id", handler.onBannedList())
	}
}

type banResponse struct {
	Ban             Ban              `json:"ban"`
	Escalation      EscalationResult `json:"escalation"`
	EscalationError string           `json:"escalation_error,omitempty"`
}

func (h banHandler) onBanCreate() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req BanRequest
		if !httphelper.Bind(ctx, &req) {
			return
		}

		record, escalation, errBan := h.bans.Ban(ctx, req)
		if errBan != nil {
			var escalationErr *EscalationError
			if errors.As(errBan, &escalationErr) {
				// The ban was recorded before the escalation failed, report
				// success along with what the pipeline managed to do.
				ctx.JSON(http.StatusCreated, banResponse{
					Ban:             record,
					Escalation:      escalationErr.Result,
					EscalationError: escalationErr.Error(),
				})

				return
			}

			switch {
			case errors.Is(errBan, discussion.ErrUnknownCourse):
				httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusForbidden, httphelper.ErrPermissionDenied,
					"Discussion moderation is not enabled for this course"))
			case errors.Is(errBan, person.ErrNotFound):
				httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusNotFound, httphelper.ErrNotFound,
					"Unknown user: %d", req.BannedUserID))
			case errors.Is(errBan, ErrAlreadyBanned):
				httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusBadRequest, httphelper.ErrBadRequest,
					"User already has an active ban for this target"))
			case errors.Is(errBan, ErrInvalidRequest), errors.Is(errBan, ErrSameUser):
				httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusBadRequest, errBan))
			default:
				httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusInternalServerError,
					errors.Join(errBan, httphelper.ErrInternal)))
			}

			return
		}

		ctx.JSON(http.StatusCreated, banResponse{Ban: record, Escalation: escalation})
	}
}

func (h banHandler) onBannedList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		courseID, found := httphelper.GetStringParam(ctx, "course_id")
		if !found {
			return
		}

		banned, errBanned := h.bans.Banned(ctx, courseID)
		if errBanned != nil {
			httphelper.SetError(ctx, httphelper.NewAPIError(http.StatusInternalServerError,
				errors.Join(errBanned, httphelper.ErrInternal)))

			return
		}

		if banned == nil {
			banned = []BannedPerson{}
		}

		ctx.JSON(http.StatusOK, banned)
	}
}
