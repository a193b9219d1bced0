package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/polisee/polisee/internal/cli"
	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your personal details",
		Long:  `Show and edit the personal details the analysis service needs before it can read a policy.`,
	}

	cmd.AddCommand(profileShowCmd())
	cmd.AddCommand(profileEditCmd())

	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := newAPIClient()
			if err != nil {
				return err
			}
			userID, err := currentUserID()
			if err != nil {
				return err
			}

			profile, err := client.GetProfile(ctx, userID)
			if errors.Is(err, common.ErrNotFound) {
				fmt.Println(cli.InfoStyle.Render("No profile yet. Use 'polisee profile edit' to create one."))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get profile: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "Full name:\t%s\n", profile.FullName)
			fmt.Fprintf(w, "Phone:\t%s\n", profile.PhoneNumber)
			fmt.Fprintf(w, "National ID:\t%s\n", profile.NationalID)
			fmt.Fprintf(w, "Date of birth:\t%s\n", profile.DateOfBirth)
			fmt.Fprintf(w, "Gender:\t%s\n", profile.Gender)
			if profile.Email != "" {
				fmt.Fprintf(w, "Email:\t%s\n", profile.Email)
			}
			if profile.InsuranceProvider != "" {
				fmt.Fprintf(w, "Provider:\t%s\n", profile.InsuranceProvider)
			}
			if profile.PolicyID != "" {
				fmt.Fprintf(w, "Policy:\t%s\n", profile.PolicyID)
			}

			if missing := profile.MissingFields(); len(missing) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintln(w, cli.FormatWarning("Still missing: "+strings.Join(missing, ", ")))
			}
			return nil
		},
	}
}

func profileEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Update your profile",
		Long: `Update profile fields. Only the flags you pass are changed; everything
else keeps its current value.`,
		RunE: runProfileEdit,
	}

	cmd.Flags().String("full-name", "", "full legal name")
	cmd.Flags().String("phone", "", "phone number")
	cmd.Flags().String("national-id", "", "national ID number")
	cmd.Flags().String("dob", "", "date of birth (YYYY-MM-DD)")
	cmd.Flags().String("gender", "", "gender")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("city", "", "city")
	cmd.Flags().String("provider", "", "insurance provider")

	return cmd
}

func runProfileEdit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	userID, err := currentUserID()
	if err != nil {
		return err
	}

	// Start from the current profile so unset flags don't clobber fields.
	profile, err := client.GetProfile(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		profile = &model.UserProfile{UserID: userID}
	} else if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	apply := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
		}
	}
	apply("full-name", &profile.FullName)
	apply("phone", &profile.PhoneNumber)
	apply("national-id", &profile.NationalID)
	apply("dob", &profile.DateOfBirth)
	apply("gender", &profile.Gender)
	apply("email", &profile.Email)
	apply("city", &profile.City)
	apply("provider", &profile.InsuranceProvider)

	saved, err := client.SaveProfile(ctx, profile)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	fmt.Println(cli.FormatSuccess("Profile saved"))
	if missing := saved.MissingFields(); len(missing) > 0 {
		fmt.Println(cli.FormatWarning("Still missing: " + strings.Join(missing, ", ")))
	}
	return nil
}
