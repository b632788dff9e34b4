// Package config handles loading and validating accessbridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Controllers:
//
// Each entry under controllers names one access controller. Entries missing
// an address or credentials are accepted here and disabled by the bridge at
// startup, so a half-written config never stops the other controllers.
//
// Feature options:
//
// The options list holds raw "Enable.<Option>[.<ID>][.<Value>]" and
// "Disable.<Option>[.<ID>]" strings. They are parsed by the featureopt
// package, not here.
//
// Security Considerations:
//   - Controller passwords can be supplied as ACCESSBRIDGE_CONTROLLER_<n>_PASSWORD
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, c := range cfg.Controllers {
//	    fmt.Println(c.Address)
//	}
package config
