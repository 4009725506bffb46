package cmd

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclass/dbans/internal/ban"
	"github.com/openclass/dbans/internal/discussion"
)

// banCmd records a ban and runs the escalation pipeline from the shell,
// mirroring the web payload.
func banCmd() *cobra.Command {
	var req ban.BanRequest

	var scope string

	cmd := &cobra.Command{
		Use:   "ban",
		Short: "Ban a user from course discussions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			req.Scope = discussion.Scope(scope)

			app, errApp := NewApp()
			if errApp != nil {
				return errApp
			}

			defer func() {
				if errClose := app.Close(ctx); errClose != nil {
					slog.Error("Error closing", slog.String("error", errClose.Error()))
				}
			}()

			if errSetup := app.Init(ctx); errSetup != nil {
				return errSetup
			}

			record, result, errBan := app.bans.Ban(ctx, req)
			if errBan != nil {
				return errBan
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")

			return encoder.Encode(map[string]any{
				"ban":        record,
				"escalation": result,
			})
		},
	}

	cmd.Flags().Int64Var(&req.BannedUserID, "user", 0, "User id to ban")
	cmd.Flags().Int64Var(&req.ModeratorUserID, "moderator", 0, "Moderator user id")
	cmd.Flags().StringVar(&req.CourseID, "course", "", "Course id the ban originates from")
	cmd.Flags().StringVar(&scope, "scope", string(discussion.ScopeCourse), "Ban scope (course or organization)")
	cmd.Flags().StringVar(&req.Reason, "reason", "", "Ban reason")

	return cmd
}
