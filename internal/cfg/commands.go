package cfg

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tidarr/internal/auth"
	"tidarr/internal/domain/consts"
	"tidarr/internal/domain/keys"
	"tidarr/internal/models"
	"tidarr/internal/repo"
	"tidarr/internal/utils/logging"
)

// printDeviceCodePrompt shows the verification link during a device flow.
func printDeviceCodePrompt(userCode, verificationURL string) {
	bold := color.New(color.Bold, color.FgCyan)
	fmt.Println()
	fmt.Print("To authorize this device, visit ")
	bold.Println(verificationURL)
	fmt.Print("and enter the code ")
	bold.Println(userCode)
	fmt.Println()
}

// initLoginCmd runs the authentication flow to completion.
func initLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the streaming service.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := buildSessionManager(buildHTTPClient())

			session, err := m.Authenticate(cmd.Context(), printDeviceCodePrompt)
			if err != nil {
				return err
			}
			logging.S("Logged in as user %s (%s)", session.UserID, session.CountryCode)
			return nil
		},
	}
}

// initLogoutCmd removes the persisted session.
func initLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := auth.NewSessionStore(viper.GetString(keys.SessionFile))
			if err := store.Clear(); err != nil {
				return err
			}
			logging.S("Session cleared")
			return nil
		},
	}
}

// initStatusCmd prints session state and recent ledger rows.
func initStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session state and recent downloads.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := buildSessionManager(buildHTTPClient())

			s := m.Session()
			fmt.Printf("Session state: %s\n", m.State())
			if s.UserID != "" {
				fmt.Printf("User: %s (%s), token valid: %t\n", s.UserID, s.CountryCode, m.IsAccessTokenValid())
			}

			db, err := openLedger()
			if err != nil {
				logging.W("Could not open the downloads ledger: %v", err)
				return nil
			}
			defer db.Close()

			recs, err := repo.GetDownloadStore(db.DB).Recent(15)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No recorded downloads.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Item", "Kind", "Quality", "Segments", "Output"})
			for _, r := range recs {
				table.Append([]string{
					r.ItemID,
					r.Kind,
					r.Quality,
					fmt.Sprintf("%d/%d", r.SegmentsWritten, r.SegmentsExpected),
					r.OutputPath,
				})
			}
			table.Render()
			return nil
		},
	}
}

// initGetCmd downloads one item.
func initGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <item-id>",
		Short: "Download a track or video by its item id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := args[0]
			if _, err := strconv.ParseInt(itemID, 10, 64); err != nil {
				return fmt.Errorf("item id must be numeric, got %q", itemID)
			}

			kind := models.KindTrack
			if viper.GetString(keys.MediaType) == consts.KindVideo {
				kind = models.KindVideo
			}

			quality := viper.GetString(keys.Quality)
			if quality == "" {
				quality = consts.DefaultTrackQuality
				if kind == models.KindVideo {
					quality = consts.DefaultVideoQuality
				}
			}

			db, err := openLedger()
			if err != nil {
				logging.W("Could not open the downloads ledger, proceeding without it: %v", err)
			} else {
				defer db.Close()
			}

			pipeline := buildPipeline(db)
			res, err := pipeline.ProcessItem(cmd.Context(), itemID, kind, quality)
			if err != nil {
				return err
			}

			if res.SegmentsSkipped > 0 {
				logging.W("Download finished with %d/%d segments; the output may be incomplete",
					res.SegmentsWritten, res.SegmentsExpected)
			}
			logging.S("Saved %s", res.OutputPath)
			return nil
		},
	}

	cmd.Flags().String(keys.MediaType, consts.KindTrack, "Media type: track or video")
	cmd.Flags().String(keys.Quality, "", "Audio quality (e.g. LOSSLESS) or video height (e.g. 720)")
	cmd.Flags().Bool(keys.Force, false, "Re-download even if the ledger has the item")

	viper.BindPFlag(keys.MediaType, cmd.Flags().Lookup(keys.MediaType))
	viper.BindPFlag(keys.Quality, cmd.Flags().Lookup(keys.Quality))
	viper.BindPFlag(keys.Force, cmd.Flags().Lookup(keys.Force))

	return cmd
}
