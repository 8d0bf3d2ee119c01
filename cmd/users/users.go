package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for user management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage dashborion user accounts",
	Long:  `Commands for managing dashboard user accounts directly from the server.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	createCmd.Flags().StringVar(&nameFlag, "name", "", "Display name of the user")
	createCmd.Flags().StringSliceVar(&groupsFlag, "group", []string{}, "Local group(s) to assign to the user")

	tokenCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")

	UsersCmd.AddCommand(createCmd)
	UsersCmd.AddCommand(listCmd)
	UsersCmd.AddCommand(disableCmd)
	UsersCmd.AddCommand(tokenCmd)
}
