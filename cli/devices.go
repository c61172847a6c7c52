package cli

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/videomode"
)

// DevicesAction lists every device the registered drivers enumerate.
func DevicesAction(c *cli.Context) (err error) {
	logger, syncLogger, err := newLogger(c, nil)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, syncLogger())
	}()

	infos, err := driver.Default().Enumerate(c.Context)
	if err != nil {
		// partial results are still worth showing
		logger.Warnw("some drivers failed to enumerate", "error", err)
		warningf(c.App.ErrWriter, "%v", err)
	}
	if len(infos) == 0 {
		printf(c.App.Writer, "No devices found")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"URI", "Name", "Vendor", "Driver", "Live"})
	t.AppendRows(lo.Map(infos, func(info driver.DeviceInfo, _ int) table.Row {
		return table.Row{info.URI, info.Name, info.Vendor, info.Driver, info.Live}
	}))
	t.Render()
	return nil
}

func modeRows(catalog videomode.Catalog) []table.Row {
	return lo.Map(catalog.List(), func(m videomode.VideoMode, i int) table.Row {
		fps := "-"
		if m.FrameRate > 0 {
			fps = strconv.FormatFloat(float64(m.FrameRate), 'f', -1, 32)
		}
		return table.Row{i, m.Width, m.Height, m.PixelFormat, fps}
	})
}

// ModesAction prints the depth and color catalogs of a device.
func ModesAction(c *cli.Context) (err error) {
	run, err := openDevice(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, run.close())
	}()

	info, err := run.session.DeviceInfo()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s (%s)", info.URI, info.Name)
	for _, kind := range driver.Kinds {
		catalog, err := run.session.DepthCatalog()
		if kind == driver.Color {
			catalog, err = run.session.ColorCatalog()
		}
		if err != nil {
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(c.App.Writer)
		t.SetTitle(fmt.Sprintf("%s modes", kind))
		t.AppendHeader(table.Row{"#", "Width", "Height", "Format", "FPS"})
		t.AppendRows(modeRows(catalog))
		t.Render()
	}
	return nil
}
