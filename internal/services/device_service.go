package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Settings keys for persisted device state
const (
	SettingAuthToken  = "auth_token"
	SettingSyncConfig = "sync_config"
)

// DeviceInfo identifies this kiosk to the backend
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	BranchID   int64
	Version    string
}

// SyncConfigurer accepts schedule updates from the backend
type SyncConfigurer interface {
	UpdateSyncConfig(cfg models.SyncConfig) error
}

// DeviceService owns the device token and the server-provided sync schedule
type DeviceService struct {
	api       DeviceAPI
	settings  repositories.SettingsRepository
	sync      SyncConfigurer
	info      DeviceInfo
	validator *validator.Validate
	logger    *logrus.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(api DeviceAPI, settings repositories.SettingsRepository, sync SyncConfigurer, info DeviceInfo, logger *logrus.Logger) *DeviceService {
	if logger == nil {
		logger = logrus.New()
	}
	return &DeviceService{
		api:       api,
		settings:  settings,
		sync:      sync,
		info:      info,
		validator: validator.New(),
		logger:    logger,
	}
}

// Register exchanges a registration code for a device token and persists it
// together with the schedule the backend hands out.
func (s *DeviceService) Register(ctx context.Context, registrationCode string) (*backend.RegisterResponse, error) {
	req := backend.RegisterRequest{
		DeviceID:         s.info.DeviceID,
		DeviceName:       s.info.DeviceName,
		BranchID:         s.info.BranchID,
		AppVersion:       s.info.Version,
		RegistrationCode: registrationCode,
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	if err := s.settings.SetSetting(ctx, SettingAuthToken, resp.Token); err != nil {
		return nil, fmt.Errorf("failed to persist device token: %w", err)
	}

	if resp.SyncConfig != nil {
		if err := s.applySyncConfig(ctx, *resp.SyncConfig); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"device_id": resp.DeviceID,
		"branch_id": resp.BranchID,
	}).Info("Device registered")
	return resp, nil
}

func (s *DeviceService) applySyncConfig(ctx context.Context, cfg models.SyncConfig) error {
	cfg = cfg.WithDefaults()

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode sync config: %w", err)
	}
	if err := s.settings.SetSetting(ctx, SettingSyncConfig, string(raw)); err != nil {
		return fmt.Errorf("failed to persist sync config: %w", err)
	}

	if s.sync != nil {
		if err := s.sync.UpdateSyncConfig(cfg); err != nil {
			return fmt.Errorf("failed to apply sync config: %w", err)
		}
	}
	return nil
}

// Disconnect tells the backend the device is leaving and forgets the token.
// The local token is cleared even when the backend cannot be reached.
func (s *DeviceService) Disconnect(ctx context.Context) error {
	if !s.api.HasToken() {
		return nil
	}

	if err := s.api.Disconnect(ctx); err != nil {
		s.logger.WithError(err).Warn("Backend disconnect failed, clearing local token anyway")
	}

	s.api.SetToken("")
	if err := s.settings.DeleteSetting(ctx, SettingAuthToken); err != nil {
		return fmt.Errorf("failed to clear device token: %w", err)
	}

	s.logger.Info("Device disconnected")
	return nil
}

// Restore loads the persisted token and schedule at boot. It reports
// whether the device is registered.
func (s *DeviceService) Restore(ctx context.Context) (bool, error) {
	if raw, ok, err := s.settings.GetSetting(ctx, SettingSyncConfig); err != nil {
		return false, err
	} else if ok && s.sync != nil {
		var cfg models.SyncConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			s.logger.WithError(err).Warn("Ignoring unreadable cached sync config")
		} else if err := s.sync.UpdateSyncConfig(cfg); err != nil {
			s.logger.WithError(err).Warn("Ignoring invalid cached sync config")
		}
	}

	token, ok, err := s.settings.GetSetting(ctx, SettingAuthToken)
	if err != nil {
		return false, err
	}
	if !ok || token == "" {
		s.logger.Info("Device is not registered")
		return false, nil
	}

	s.api.SetToken(token)
	return true, nil
}

// IsRegistered reports whether the transport holds a device token
func (s *DeviceService) IsRegistered() bool {
	return s.api.HasToken()
}

// Info returns the identity sent on registration
func (s *DeviceService) Info() DeviceInfo {
	return s.info
}
