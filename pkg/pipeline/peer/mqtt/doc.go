// Package mqtt is a source and sink that carries records over MQTT.
//
// Each record is published as one JSON document, in the same line format the
// rename command reads and writes, to <topicPrefix>/<record topic>:
//
//	mosquitto_sub -t 'smt/#'
//	mosquitto_pub -t smt/users -m '{"topic":"users","key":"u1","value":{"email_v2":"a@b.c"}}'
//
// When a received document has no topic, the MQTT topic below the prefix is used.
package mqtt
