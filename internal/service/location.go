package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
	"toolcrib-api/pkg/logger"
)

// LocationService manages the station > unit > tray hierarchy.
type LocationService struct {
	store repository.Store
	log   *zap.Logger
}

func NewLocationService(store repository.Store, log *zap.Logger) *LocationService {
	return &LocationService{store: store, log: logger.Named(log, "location")}
}

// CreateStation stores a station under the next SS code.
func (s *LocationService) CreateStation(ctx context.Context, st model.Station) (*model.Station, error) {
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" {
		return nil, invalid("name", "is required")
	}

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.InsertStation(ctx, &st)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("station created", zap.String("station_id", st.StationID))
	return &st, nil
}

func (s *LocationService) ListStations(ctx context.Context) ([]model.Station, error) {
	return s.store.ListStations(ctx)
}

// DeleteStation removes the station and everything below it.
func (s *LocationService) DeleteStation(ctx context.Context, pk int64) error {
	ok, err := s.store.DeleteStation(ctx, pk)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrStationNotFound, pk)
	}
	s.log.Info("station deleted", zap.Int64("station_pk", pk))
	return nil
}

// CreateUnit stores a unit under the station, copying its code.
func (s *LocationService) CreateUnit(ctx context.Context, stationPK int64, u model.Unit) (*model.Unit, error) {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return nil, invalid("name", "is required")
	}

	station, err := s.store.GetStation(ctx, stationPK)
	if err != nil {
		return nil, err
	}
	if station == nil {
		return nil, fmt.Errorf("%w: %d", ErrStationNotFound, stationPK)
	}
	u.StationPK = station.ID
	u.StationCode = station.StationID

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.InsertUnit(ctx, &u)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("unit created", zap.String("unit_id", u.UnitID), zap.String("station_id", u.StationCode))
	return &u, nil
}

// ListUnits returns the units of a station.
func (s *LocationService) ListUnits(ctx context.Context, stationPK int64) ([]model.Unit, error) {
	station, err := s.store.GetStation(ctx, stationPK)
	if err != nil {
		return nil, err
	}
	if station == nil {
		return nil, fmt.Errorf("%w: %d", ErrStationNotFound, stationPK)
	}
	return s.store.ListUnits(ctx, stationPK)
}

// CreateTray stores a tray under the unit, copying its code.
func (s *LocationService) CreateTray(ctx context.Context, unitPK int64, t model.Tray) (*model.Tray, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, invalid("tray_name", "is required")
	}
	if t.MaxCapacity != nil && *t.MaxCapacity < 0 {
		return nil, invalid("max_capacity", "must not be negative")
	}

	unit, err := s.store.GetUnit(ctx, unitPK)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnitNotFound, unitPK)
	}
	t.UnitPK = unit.ID
	t.UnitCode = unit.UnitID

	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.InsertTray(ctx, &t)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("tray created", zap.String("tray_id", t.TrayID), zap.String("unit_id", t.UnitCode))
	return &t, nil
}

// ListTrays returns the trays of a unit.
func (s *LocationService) ListTrays(ctx context.Context, unitPK int64) ([]model.Tray, error) {
	unit, err := s.store.GetUnit(ctx, unitPK)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnitNotFound, unitPK)
	}
	return s.store.ListTrays(ctx, unitPK)
}

// ResolveTray accepts either a numeric primary key or a T-code.
func (s *LocationService) ResolveTray(ctx context.Context, ref string) (*model.Tray, error) {
	var (
		tray *model.Tray
		err  error
	)
	if pk, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		tray, err = s.store.GetTray(ctx, pk)
	} else {
		tray, err = s.store.GetTrayByCode(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if tray == nil {
		return nil, fmt.Errorf("%w: %s", ErrTrayNotFound, ref)
	}
	return tray, nil
}
