package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/psulink/internal/config"
	"github.com/muurk/psulink/internal/ui"
)

// set-profile flags
var (
	newProtocol   string
	newPort       string
	newBaud       int
	newTimeoutMS  int
	newIdentifier uint8
	newNickname   string
	makeDefault   bool
)

func init() {
	setProfileCmd.Flags().StringVar(&newProtocol, "type", config.ProtocolDPS150, "Protocol: dps150 or dp100")
	setProfileCmd.Flags().StringVar(&newPort, "device", "", "Device path or tcp://host:port (required)")
	setProfileCmd.Flags().IntVar(&newBaud, "rate", 0, "DPS-150 baud rate (default 115200)")
	setProfileCmd.Flags().IntVar(&newTimeoutMS, "timeout-ms", 0, "Read timeout in milliseconds")
	setProfileCmd.Flags().Uint8Var(&newIdentifier, "identifier", 0, "Expected DPS-150 identifier (0 skips the check)")
	setProfileCmd.Flags().StringVar(&newNickname, "nickname", "", "Display name")
	setProfileCmd.Flags().BoolVar(&makeDefault, "default", false, "Make this the default profile")
	_ = setProfileCmd.MarkFlagRequired("device")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(setProfileCmd)
	configCmd.AddCommand(removeProfileCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configWizardCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage connection profiles",
	Long: fmt.Sprintf(`Show and edit the psulink configuration file.

The file lives in the user configuration directory (psulink/config.yaml)
unless %s points elsewhere.`, config.ConfigEnvVar),
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration file path and contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		fmt.Printf("# %s\n", path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fmt.Println("# (file does not exist; showing defaults)")
		}
		out, err := yaml.Marshal(registry)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(out))

		if len(registry.Profiles) > 0 {
			def := ""
			if registry.Preferences != nil {
				def = registry.Preferences.DefaultProfile
			}
			table := &ui.Table{Headers: []string{"", "PROFILE", "PROTOCOL", "PORT", "NICKNAME"}}
			for _, name := range registry.ProfileNames() {
				p := registry.Profiles[name]
				marker := ""
				if name == def {
					marker = "*"
				}
				table.AddRow(marker, name, p.Protocol, p.Port, p.Nickname)
			}
			fmt.Println()
			fmt.Println(table.Render())
		}
		return nil
	},
}

var setProfileCmd = &cobra.Command{
	Use:   "set-profile <name>",
	Short: "Add or replace a connection profile",
	Example: `  psuctl config set-profile bench --device /dev/ttyACM0 --rate 115200
  psuctl config set-profile usb --type dp100 --device /dev/hidraw3 --default
  psuctl config set-profile lab --device tcp://lab-pi:7000 --nickname "Rack 2"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		name := args[0]
		p := &config.Profile{
			Protocol:   strings.ToLower(newProtocol),
			Port:       newPort,
			Baud:       newBaud,
			TimeoutMS:  newTimeoutMS,
			Identifier: newIdentifier,
			Nickname:   newNickname,
		}
		if err := registry.SetProfile(name, p); err != nil {
			return err
		}
		if makeDefault {
			registry.Preferences.DefaultProfile = name
		}
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Println(ui.RenderSuccess("Profile saved", map[string]string{
			"Name":     name,
			"Protocol": p.Protocol,
			"Port":     p.Port,
			"Default":  fmt.Sprint(registry.Preferences.DefaultProfile == name),
		}))
		return nil
	},
}

var removeProfileCmd = &cobra.Command{
	Use:   "remove-profile <name>",
	Short: "Delete a connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if err := registry.RemoveProfile(args[0]); err != nil {
			return err
		}
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Removed profile %q\n", args[0])
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long:  `Write a configuration file with one example DPS-150 and one DP100 profile. An existing file is left alone unless --force is given.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		registry, err := config.CreateDefaultConfig()
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderSuccess("Configuration written", map[string]string{
			"Path":     path,
			"Profiles": strings.Join(registry.ProfileNames(), ", "),
		}))
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

// protocolChoices feeds the wizard's protocol list.
var protocolChoices = []ui.ProtocolChoice{
	{
		Name:        config.ProtocolDPS150,
		Label:       "FNIRSI DPS-150",
		Help:        "USB serial (CDC ACM), 115200 baud by default",
		PortHint:    "/dev/ttyACM0 or tcp://host:port",
		DefaultName: "bench",
	},
	{
		Name:        config.ProtocolDP100,
		Label:       "Alientek DP100",
		Help:        "USB HID, 64-byte reports",
		PortHint:    "/dev/hidraw0",
		DefaultName: "usb",
	},
}

var configWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Create a profile interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.IsTerminal() {
			return fmt.Errorf("the wizard needs a terminal; use 'psuctl config set-profile' instead")
		}
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		form := ui.NewProfileForm(protocolChoices)
		form.Validate = func(a ui.ProfileAnswers) error {
			if _, exists := registry.Profiles[a.Name]; exists {
				return fmt.Errorf("profile %q already exists", a.Name)
			}
			p := config.Profile{Protocol: a.Protocol, Port: a.Port}
			return p.Validate()
		}
		answers, ok, err := ui.RunProfileForm(form)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}

		p := &config.Profile{Protocol: answers.Protocol, Port: answers.Port}
		if err := registry.SetProfile(answers.Name, p); err != nil {
			return err
		}
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Println(ui.RenderSuccess("Profile saved", map[string]string{
			"Name":     answers.Name,
			"Protocol": p.Protocol,
			"Port":     p.Port,
			"Default":  fmt.Sprint(registry.Preferences.DefaultProfile == answers.Name),
		}))
		return nil
	},
}
