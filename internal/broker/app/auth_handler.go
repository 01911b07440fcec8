package app

import (
	"context"

	"eventspace_realtime_service/internal/broker/domain"
	rtdomain "eventspace_realtime_service/internal/realtime/domain"
	"eventspace_realtime_service/pkg/encrypt"
	"eventspace_realtime_service/pkg/logger"
	"eventspace_realtime_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MemberHandler 处理用户相关的 HTTP 请求
type MemberHandler struct {
	memberRepo domain.MemberRepository
	notifyUC   *NotifyUseCase
}

// NewMemberHandler 创建新的 MemberHandler
func NewMemberHandler(memberRepo domain.MemberRepository, notifyUC *NotifyUseCase) *MemberHandler {
	return &MemberHandler{
		memberRepo: memberRepo,
		notifyUC:   notifyUC,
	}
}

// ConnectCheck 連線檢查
// @Summary 連線檢查
// @Tags Comm
// @Success 200 {object} string "ok"
// @Router / [get]
func (h *MemberHandler) ConnectCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "ok"})
}

// Login 用户登录
// @Summary 用户登录
// @Description 用户通过邮箱和密码登录，成功後回傳 JWT
// @Tags Members
// @Accept json
// @Produce json
// @Param request body app.LoginRequest true "用户登录信息"
// @Success 200 {object} string "登录成功"
// @Failure 400 {object} string "请求错误"
// @Failure 401 {object} string "登录失败"
// @Router /member/login [post]
func (h *MemberHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	logger.Log.Debug("Login", zap.String("Email", req.Email))

	member, err := h.memberRepo.FindByEmail(req.Email)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
	}
	if err := encrypt.CheckPassword(member.Password, req.Password); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
	}

	tokenStr, err := token.GenerateJWTWrapper(member.ID, member.FirstName)
	if err != nil {
		logger.Log.Error("Login generate token err", zap.String("email", req.Email), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "generate token failed"})
	}

	logger.Log.Info("Login success", zap.Int("userID", member.ID))
	return c.JSON(fiber.Map{"token": tokenStr, "message": "login success"})
}

// Notify 推送通知给指定用户
// @Summary 推送通知
// @Description 把一則通知發布到目標用户的通知 topic
// @Tags Notifications
// @Accept json
// @Produce json
// @Param request body app.NotifyRequest true "通知內容"
// @Success 200 {object} string "推送成功"
// @Failure 400 {object} string "请求错误"
// @Failure 500 {object} string "服务器错误"
// @Router /notify [post]
func (h *MemberHandler) Notify(c *fiber.Ctx) error {
	var req NotifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	err := h.notifyUC.Execute(context.Background(), req.UserID, rtdomain.Notification{
		Message: req.Message,
		Link:    req.Link,
	})
	if err != nil {
		if err == rtdomain.ErrEmptyContent {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		logger.Log.Error("Notify err", zap.Int("userID", req.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "publish failed"})
	}
	return c.JSON(fiber.Map{"message": "notify success"})
}

// LoginRequest 登录请求内容
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NotifyRequest 推送通知请求内容
type NotifyRequest struct {
	UserID  int    `json:"userId"`
	Message string `json:"message"`
	Link    string `json:"link"`
}
