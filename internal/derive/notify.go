package derive

import (
	"fmt"

	"go-markethub/internal/domain"
)

// Event 一次状态变更的扇出输入，由后端在主写完成后发布
type Event struct {
	Action     string // domain.Action* 枚举
	ActorID    string
	ActorName  string
	TargetID   string // 接收通知的用户
	EntityType string
	EntityID   string
	EntityName string // 工单标题 / 商品名等，用于文案
}

// Notification 按动作类型套模板，返回待持久化的通知。
// 动作不产生通知（或缺接收者）时返回 ok=false。
func Notification(ev Event) (n domain.Notification, ok bool) {
	if ev.TargetID == "" || ev.TargetID == ev.ActorID {
		return n, false
	}
	n.UserID = ev.TargetID
	switch ev.Action {
	case domain.ActionJobAccept:
		n.Message = fmt.Sprintf("%s accepted your job \"%s\"", ev.ActorName, ev.EntityName)
		n.Link = "/jobs/" + ev.EntityID
	case domain.ActionJobComplete:
		n.Message = fmt.Sprintf("Job \"%s\" was marked completed", ev.EntityName)
		n.Link = "/jobs/" + ev.EntityID
	case domain.ActionChatSend:
		n.Message = fmt.Sprintf("New message from %s on \"%s\"", ev.ActorName, ev.EntityName)
		n.Link = "/jobs/" + ev.EntityID + "/chat"
	case domain.ActionJobReview:
		n.Message = fmt.Sprintf("%s left you a review on \"%s\"", ev.ActorName, ev.EntityName)
		n.Link = "/jobs/" + ev.EntityID
	default:
		// 商品评论不扇出：商品归管理员所有，没有可通知的卖家
		return domain.Notification{}, false
	}
	return n, true
}
