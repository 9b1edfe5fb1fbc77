// Package auth はパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/kidstore/internal/model"
	"github.com/hitoshi/kidstore/internal/repository"
	"github.com/hitoshi/kidstore/internal/vps"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RemoteRegistry は新規ユーザーをリモートストアへ書き戻す。
type RemoteRegistry interface {
	AddUser(ctx context.Context, user vps.RemoteUser) error
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	remote      RemoteRegistry // nilの場合は書き戻しなし
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	remote RemoteRegistry,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		remote:      remote,
		config:      config,
	}
}

// minPasswordLength は登録時に要求するパスワードの最小文字数。
const minPasswordLength = 8

// Register は新規ユーザーを登録し、セッションを発行する。
// メールアドレスが登録済みの場合はEmailTakenエラーを返す。
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.User, *model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, model.NewInvalidCredentialError()
	}
	if len(password) < minPasswordLength {
		return nil, nil, &model.APIError{
			Code:     "PASSWORD_TOO_SHORT",
			Message:  fmt.Sprintf("パスワードは%d文字以上で設定してください。", minPasswordLength),
			Category: "validation",
			Action:   "より長いパスワードを入力してください。",
		}
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("パスワードハッシュの生成に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:               uuid.New().String(),
		Email:            email,
		Name:             name,
		PasswordHash:     string(hash),
		Role:             model.RoleUser,
		PurchasedModules: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	// リモートストアへの書き戻しはベストエフォート。失敗しても登録は成立する。
	if s.remote != nil {
		if err := s.remote.AddUser(ctx, vps.RemoteUser{
			ID:               user.ID,
			Email:            user.Email,
			Name:             user.Name,
			Role:             string(user.Role),
			PurchasedModules: user.PurchasedModules,
		}); err != nil {
			slog.Warn("リモートストアへのユーザー書き戻しに失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("新規ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)

	return user, session, nil
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// ユーザー不在とパスワード不一致は同じエラーを返し、登録済みメールアドレスの
// 探索に使えないようにする。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("ユーザーがログインしました",
		slog.String("user_id", user.ID),
	)

	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return nil
}

// CurrentUser はセッションIDからログイン中のユーザーを取得する。
// セッションが無効・期限切れの場合はUserNotFoundエラーを返す。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewUserNotFoundError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// createSession は暗号学的乱数のセッションIDでセッションを作成する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	return session, nil
}

// generateSessionID は256ビットのランダムなセッションIDを生成する。
func generateSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
