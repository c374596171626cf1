// Package infra contains technical adapters such as the MQTT client,
// metrics exporters and file-backed stores. These packages should depend
// only on the interfaces defined in the core packages.
package infra
