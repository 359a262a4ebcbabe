package middleware

import (
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// RecoverUpdate гасит панику обработчика апдейта, чтобы один кривой
// апдейт не ронял polling-цикл целиком.
func RecoverUpdate(updateID int) {
	if r := recover(); r != nil {
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"update_id": updateID,
			"panic":     r,
			"stack":     string(debug.Stack()),
		}).Error("ПАНИКА при обработке апдейта — восстановлено")
	}
}
