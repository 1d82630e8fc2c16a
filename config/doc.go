// Package config loads the YAML configuration shared by the HPI stack and
// hpictl.
//
// Values are layered: built-in defaults, then the YAML file, then the
// SOFTHPI_FIRMWARE_DIR, SOFTHPI_LOG_LEVEL and SOFTHPI_LOG_FILE environment
// variables. The result is validated before Load returns it.
//
//	transport:
//	  idleSpin: 20000
//	  ackSpin: 20000
//	  pollDelay: 2us
//	  bridgeRetries: 5
//	adapter:
//	  crashThreshold: 10
//	firmware:
//	  dir: /lib/firmware/asihpi
//	log:
//	  level: info
//	  format: auto
//	  file: /var/log/softhpi.log
//	  maxSizeMb: 10
package config
