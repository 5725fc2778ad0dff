package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"readaloud/internal/cli/scheme/colours"
	"readaloud/internal/config"
	"readaloud/internal/reader"
)

func main() {

	if err := config.Init(); err != nil {
		colours.Error.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	settings, err := config.Load()
	if err != nil {
		colours.Error.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	app := reader.NewApp(settings)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		if err := app.Shutdown(); err != nil {
			colours.Error.Printf("Error during shutdown: %v\n", err)
		}
		fmt.Println("\n" + colours.Warning.Sprint("Goodbye!"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "readaloud",
		Short: "Narrate books aloud, page by page",
		Long: `
readaloud opens EPUB, Markdown, HTML and plain text books, shows them one
page at a time and reads them aloud, turning pages and chapters as it goes.
		`,
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	// Read command
	readCmd := &cobra.Command{
		Use:   "read [book]",
		Short: "Narrate a book",
		Long:  "Open a book by path, library number or file name and read it aloud",
		Args:  cobra.MaximumNArgs(1),
		Run:   app.Read,
	}

	// Table of contents command
	tocCmd := &cobra.Command{
		Use:   "toc [book]",
		Short: "Show the table of contents of a book",
		Args:  cobra.MaximumNArgs(1),
		Run:   app.ShowTOC,
	}

	// Library commands
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "List the books directory",
		Long:  "Display the books found in the configured books directory",
		Run:   app.ListLibrary,
	}
	libraryCmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Rescan the books directory",
			Run:   app.RefreshLibrary,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show library cache status",
			Run:   app.ShowCacheStatus,
		},
	)

	// Voices command
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "List speech engines and voices",
		Run:   app.ListVoices,
	}

	// Settings command
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		Long:  "Print the effective configuration, or persist the reading mode",
		Run:   app.ConfigureSettings,
	}

	// Add flags
	for _, cmd := range []*cobra.Command{readCmd, voicesCmd} {
		cmd.Flags().StringP("engine", "e", settings.Speech.Engine, "Speech engine (auto, mock, espeak, say, sapi, googleclassic)")
		cmd.Flags().StringP("voice", "v", settings.Speech.Voice, "Voice to use for reading. See voices for options")
	}
	readCmd.Flags().Float64P("rate", "r", settings.Speech.Rate, "Speech rate")
	readCmd.Flags().Float64P("pitch", "p", settings.Speech.Pitch, "Speech pitch")
	readCmd.Flags().StringP("chapter", "c", "", "Table of contents label, number or href to start from")
	readCmd.Flags().BoolP("autoplay", "a", false, "Start reading immediately")
	settingsCmd.Flags().String("reading-mode", "", "Persist the reading mode (normal, eye-care, high-contrast, dark)")
	settingsCmd.Flags().Bool("clear-audio-cache", false, "Remove cached cloud speech audio")

	rootCmd.AddCommand(readCmd, tocCmd, libraryCmd, voicesCmd, settingsCmd)

	err = rootCmd.Execute()
	if shutdownErr := app.Shutdown(); shutdownErr != nil {
		colours.Error.Printf("Error during shutdown: %v\n", shutdownErr)
	}
	if err != nil {
		colours.Error.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
