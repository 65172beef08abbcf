package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// vendorStatus is one row of the configuration report.
type vendorStatus struct {
	Vendor     string `json:"vendor"`
	Configured bool   `json:"configured"`
	Purpose    string `json:"purpose"`
}

// doctorReport is the full readiness report for --json.
type doctorReport struct {
	StoragePath string         `json:"storage_path"`
	StorageOK   bool           `json:"storage_ok"`
	GeoIP       bool           `json:"geoip"`
	Vendors     []vendorStatus `json:"vendors"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report which vendors and paths are configured",
	Long: `doctor inspects the loaded configuration and reports, without making
any network calls, which vendor integrations are ready and which environment
variables are still missing.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		studio, err := newStudio()
		if err != nil {
			return fmt.Errorf("error building video client: %w", err)
		}
		voice, err := newVoice()
		if err != nil {
			return fmt.Errorf("error building speech client: %w", err)
		}
		images, err := newImageClient()
		if err != nil {
			return fmt.Errorf("error building image client: %w", err)
		}
		model, err := newPlanModel()
		if err != nil {
			return fmt.Errorf("error building planning model: %w", err)
		}

		redditOK := cfg.RedditClientID != "" && cfg.RedditClientSecret != "" &&
			cfg.RedditUsername != "" && cfg.RedditPassword != ""

		report := doctorReport{
			StoragePath: cfg.StoragePath,
			GeoIP:       cfg.GeoIPDBPath != "",
			Vendors: []vendorStatus{
				{Vendor: "runway", Configured: studio.HasCredentials(), Purpose: "frame generation and animation"},
				{Vendor: "elevenlabs", Configured: voice.HasCredentials(), Purpose: "narration synthesis"},
				{Vendor: "stability", Configured: images.HasCredentials(), Purpose: "synchronous image generation"},
				{Vendor: "anthropic", Configured: model.HasCredentials(), Purpose: "profiling and strategy planning"},
				{Vendor: "reddit", Configured: redditOK, Purpose: "subreddit posting and analysis"},
				{Vendor: "twitter", Configured: cfg.TwitterBearerToken != "", Purpose: "tweet publishing"},
			},
		}
		if _, err := newFileStore(); err == nil {
			report.StorageOK = true
		}

		if jsonOutput {
			return printJSON(report)
		}

		mark := func(ok bool) string {
			if ok {
				return "ok     "
			}
			return "missing"
		}
		fmt.Printf("storage    %s  %s\n", mark(report.StorageOK), report.StoragePath)
		fmt.Printf("geoip      %s  country detection for locale defaults\n", mark(report.GeoIP))
		for _, v := range report.Vendors {
			fmt.Printf("%-10s %s  %s\n", v.Vendor, mark(v.Configured), v.Purpose)
		}
		return nil
	},
}

// GetDoctorCmd returns the doctor command.
func GetDoctorCmd() *cobra.Command {
	return doctorCmd
}
