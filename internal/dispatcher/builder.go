package dispatcher

import (
	"encoding/json"
	"fmt"
	"time"

	"famguard-alert/internal/models"

	"github.com/google/uuid"
)

// BuildAlert 构建报警记录
// triggeredAt 使用评估时间而不是落库时间，保证历史顺序与因果一致
func BuildAlert(
	childUserID string,
	alertType models.AlertType,
	priority models.AlertPriority,
	title string,
	message string,
	payload interface{},
	triggeredAt time.Time,
) (*models.Alert, error) {
	// 序列化类型化载荷
	dataJSON := "{}"
	if payload != nil {
		dataBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert payload: %w", err)
		}
		dataJSON = string(dataBytes)
	}

	return &models.Alert{
		AlertID:     uuid.New().String(),
		ChildUserID: childUserID,
		Type:        alertType,
		Priority:    priority,
		Title:       title,
		Message:     message,
		Data:        dataJSON,
		IsRead:      false,
		TriggeredAt: triggeredAt,
		CreatedAt:   time.Now(),
	}, nil
}
