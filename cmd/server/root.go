package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:          "meal-planner-api",
	Short:        "Meal planner backend: subscriptions, auth and recipe AI",
	SilenceUsage: true,
}
