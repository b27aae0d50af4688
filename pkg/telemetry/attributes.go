package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Группа задач
	AttrGroupName    = "group.name"
	AttrGroupLive    = "group.live_count"
	AttrGroupPending = "group.pending_count"

	// Правило
	AttrRuleName    = "rule.name"
	AttrRuleTrigger = "rule.trigger"
	AttrActionType  = "action.type"
	AttrActionDelta = "action.delta"

	// Валидация
	AttrValidationLevel  = "validation.level"
	AttrValidationErrors = "validation.errors"
	AttrValidationPassed = "validation.passed"

	// Эластичность
	AttrResizeDirection = "resize.direction"
	AttrResizeCount     = "resize.count"
)

// GroupAttributes возвращает атрибуты группы заданий
func GroupAttributes(group string, live, pending int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrGroupName, group),
		attribute.Int(AttrGroupLive, live),
		attribute.Int(AttrGroupPending, pending),
	}
}

// RuleAttributes возвращает атрибуты сработавшего правила
func RuleAttributes(name, trigger, actionType string, delta int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRuleName, name),
		attribute.String(AttrRuleTrigger, trigger),
		attribute.String(AttrActionType, actionType),
		attribute.Int(AttrActionDelta, delta),
	}
}

// ValidationAttributes возвращает атрибуты валидации
func ValidationAttributes(level string, errorsCount int, passed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrValidationLevel, level),
		attribute.Int(AttrValidationErrors, errorsCount),
		attribute.Bool(AttrValidationPassed, passed),
	}
}

// ResizeAttributes возвращает атрибуты запроса на изменение размера группы
func ResizeAttributes(direction string, count int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrResizeDirection, direction),
		attribute.Int(AttrResizeCount, count),
	}
}
