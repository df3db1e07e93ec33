package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
)

type printer interface {
	Lock(*lockservice.MigrationLock)
	Done(string)
	Data([]byte)
}

type simplePrinter struct {
	w io.Writer
}

func (p *simplePrinter) Lock(lock *lockservice.MigrationLock) {
	if lock == nil {
		fmt.Fprintln(p.w, "No lock")
		return
	}
	b, _ := json.Marshal(lock)
	fmt.Fprintln(p.w, string(b))
}

func (p *simplePrinter) Done(msg string) {
	fmt.Fprintln(p.w, msg)
}

func (p *simplePrinter) Data(data []byte) {
	if data == nil {
		fmt.Fprintln(p.w, "No migration data")
		return
	}
	fmt.Fprintln(p.w, string(data))
}
