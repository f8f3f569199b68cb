// Package file writes formatted points to stdout or to a file. The file is
// reopened on SIGHUP, or rotated by size when a maximum size is set.
package file

import (
	"bufio"
	"flag"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/netsampler/intflow/transport"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileDriver struct {
	fileDestination string
	lineSeparator   string
	maxSize         int // megabytes, 0 disables rotation
	maxBackups      int
	maxAge          int // days
	compress        bool

	w       *bufio.Writer
	file    io.WriteCloser
	rotator *lumberjack.Logger
	lock    *sync.Mutex
	q       chan bool
}

func (d *FileDriver) Prepare() error {
	flag.StringVar(&d.fileDestination, "transport.file", "", "File/console output (empty for stdout)")
	flag.StringVar(&d.lineSeparator, "transport.file.sep", "\n", "Line separator")
	flag.IntVar(&d.maxSize, "transport.file.maxsize", 0, "Rotate the file after this many megabytes (0 to rotate on SIGHUP only)")
	flag.IntVar(&d.maxBackups, "transport.file.maxbackups", 5, "Rotated files kept")
	flag.IntVar(&d.maxAge, "transport.file.maxage", 0, "Days rotated files are kept (0 to keep them)")
	flag.BoolVar(&d.compress, "transport.file.compress", false, "Gzip rotated files")
	return nil
}

func (d *FileDriver) openFile() error {
	if d.maxSize > 0 {
		d.rotator = &lumberjack.Logger{
			Filename:   d.fileDestination,
			MaxSize:    d.maxSize,
			MaxBackups: d.maxBackups,
			MaxAge:     d.maxAge,
			Compress:   d.compress,
		}
		d.file = d.rotator
		d.w = bufio.NewWriter(d.rotator)
		return nil
	}
	file, err := os.OpenFile(d.fileDestination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	d.file = file
	d.w = bufio.NewWriter(file)
	return nil
}

func (d *FileDriver) Init() error {
	d.q = make(chan bool)
	if d.lock == nil {
		d.lock = &sync.Mutex{}
	}

	if d.fileDestination == "" {
		d.w = bufio.NewWriter(os.Stdout)
		return nil
	}

	d.lock.Lock()
	err := d.openFile()
	d.lock.Unlock()
	if err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP)
	go func() {
		defer signal.Stop(c)
		for {
			select {
			case <-c:
				if err := d.reopen(); err != nil {
					log.WithError(err).Error("error reopening output file")
				}
			case <-d.q:
				return
			}
		}
	}()
	return nil
}

// reopen switches to a new file at the same path, eg: after a log rotation.
// With size rotation enabled the current file is rotated instead.
func (d *FileDriver) reopen() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.w.Flush(); err != nil {
		return err
	}
	if d.rotator != nil {
		return d.rotator.Rotate()
	}
	if err := d.file.Close(); err != nil {
		return err
	}
	return d.openFile()
}

func (d *FileDriver) Send(key, data []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if _, err := d.w.Write(data); err != nil {
		return err
	}
	if _, err := d.w.WriteString(d.lineSeparator); err != nil {
		return err
	}
	// stdout is read live
	if d.file == nil {
		return d.w.Flush()
	}
	return nil
}

func (d *FileDriver) Close() error {
	close(d.q)
	d.lock.Lock()
	defer d.lock.Unlock()
	err := d.w.Flush()
	if d.file != nil {
		if cErr := d.file.Close(); err == nil {
			err = cErr
		}
	}
	return err
}

func init() {
	d := &FileDriver{
		lock: &sync.Mutex{},
	}
	transport.RegisterTransportDriver("file", d)
}
