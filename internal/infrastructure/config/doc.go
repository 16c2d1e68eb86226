// Package config loads and validates configuration for the access service
// and the accessctl client.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then APPACCESS_* environment variables. The server path (Load) insists on
// a signing secret of at least 32 characters; the client path (LoadClient)
// only checks the client section and tolerates a missing file.
//
// Secrets (JWT secret, MQTT and Redis passwords, InfluxDB token) should be
// supplied through the environment rather than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
