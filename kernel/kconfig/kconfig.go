// Package kconfig parses the kernel's boot-time command-line options:
// the per-type object-cache sizing hints and the Depend table's initial
// capacity, per SPEC_FULL.md §6.1.
//
// Grounded on the retrieved systemd_exporter's package-level
// kingpin.Flag(...).Default(...).Int() declarations, rather than a
// hand-rolled flag parser.
package kconfig

import kingpin "gopkg.in/alecthomas/kingpin.v2"

var (
	nproc = kingpin.Flag("nproc", "Number of Process object-cache frames to reserve.").
		Default("256").Int()
	ngpt = kingpin.Flag("ngpt", "Number of GPT object-cache frames to reserve.").
		Default("512").Int()
	ncappage = kingpin.Flag("ncappage", "Number of CapPage object-cache frames to reserve.").
		Default("512").Int()
	nendpt = kingpin.Flag("nendpt", "Number of Endpoint object-cache frames to reserve.").
		Default("256").Int()
	npage = kingpin.Flag("npage", "Number of Page object-cache frames to reserve.").
		Default("4096").Int()
	depend = kingpin.Flag("depend", "Initial capacity hint for the Depend table.").
		Default("1024").Int()
	imagePath = kingpin.Flag("image", "Path to the boot image (coyimage format) to load.").
		String()
	storeRoot = kingpin.Flag("store-root", "Root directory of the persistent object store.").
		Default("/var/lib/coyotos/obj").String()
)

// Config is the resolved set of boot-time options, parsed once by Parse.
type Config struct {
	NProc     int
	NGPT      int
	NCapPage  int
	NEndpoint int
	NPage     int
	Depend    int
	ImagePath string
	StoreRoot string
}

// Parse parses args (normally os.Args[1:]) into a Config. appVersion is
// the version kingpin reports for --version; app is not used, so --help
// shows kingpin's default application name.
func Parse(app, appVersion string, args []string) (Config, error) {
	kingpin.Version(appVersion)
	if _, err := kingpin.CommandLine.Parse(args); err != nil {
		return Config{}, err
	}
	return Config{
		NProc:     *nproc,
		NGPT:      *ngpt,
		NCapPage:  *ncappage,
		NEndpoint: *nendpt,
		NPage:     *npage,
		Depend:    *depend,
		ImagePath: *imagePath,
		StoreRoot: *storeRoot,
	}, nil
}
