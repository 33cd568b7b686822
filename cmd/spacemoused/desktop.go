package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// ============================================================================
// Desktop-action backend (KWin over the session bus)
// ============================================================================
//
// Discrete desktop actions go to the compositor over D-Bus. Calls carry a
// short timeout so a hung compositor cannot stall the event loop; failures
// are logged at debug by the dispatcher and otherwise ignored.
//
// If the session bus is unreachable at startup the daemon keeps running with
// desktop actions disabled.
// ============================================================================

const desktopCallTimeout = 200 * time.Millisecond

// KWinDesktop is the KWin-backed DesktopActions implementation.
type KWinDesktop struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

func ConnectDesktopBus(logger *slog.Logger) (*KWinDesktop, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	logger.Info("connected to session bus for desktop actions")
	return &KWinDesktop{conn: conn, logger: logger}, nil
}

func (k *KWinDesktop) call(dest, path, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), desktopCallTimeout)
	defer cancel()

	obj := k.conn.Object(dest, dbus.ObjectPath(path))
	return obj.CallWithContext(ctx, method, 0, args...).Err
}

func (k *KWinDesktop) SwitchDesktop(dir int) error {
	method := "org.kde.KWin.nextDesktop"
	if dir < 0 {
		method = "org.kde.KWin.previousDesktop"
	}
	return k.call("org.kde.KWin", "/KWin", method)
}

func (k *KWinDesktop) ToggleOverview() error {
	return k.call("org.kde.kglobalaccel", "/component/kwin",
		"org.kde.kglobalaccel.Component.invokeShortcut", "ExposeAll")
}

func (k *KWinDesktop) ShowDesktop(show bool) error {
	return k.call("org.kde.KWin", "/KWin", "org.kde.KWin.showDesktop", show)
}

func (k *KWinDesktop) Close() error {
	return k.conn.Close()
}
