package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <registration-code>",
	Short: "Register this kiosk with the backend",
	Long: `Exchange a one-time registration code for a device token. The token and
the sync schedule handed out by the backend are stored in the local database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		container, err := openContainer(ctx)
		if err != nil {
			return err
		}
		defer container.Close()

		resp, err := container.Services.Device.Register(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Registered device %s for branch %d\n", resp.DeviceID, resp.BranchID)
		if resp.SyncConfig != nil {
			fmt.Printf("   Sync every %v, heartbeat every %v\n",
				resp.SyncConfig.SyncInterval(), resp.SyncConfig.HeartbeatInterval())
		}
		return nil
	},
}
