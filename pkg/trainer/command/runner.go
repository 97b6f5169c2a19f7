package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Invocation — один запуск рабочего процесса.
type Invocation struct {
	Program string
	Args    []string
	Env     []string // KEY=VALUE поверх окружения процесса
}

func (i Invocation) String() string {
	return strings.TrimSpace(i.Program + " " + strings.Join(i.Args, " "))
}

// Runner запускает процесс и отдаёт строки его stdout в onLine.
type Runner interface {
	Run(ctx context.Context, inv Invocation, onLine func(string)) error
}

// ExecRunner — Runner на os/exec. Отмена контекста убивает процесс.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// maxStderrTail — сколько последних байт stderr попадает в ошибку.
const maxStderrTail = 4096

func (ExecRunner) Run(ctx context.Context, inv Invocation, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Env = append(os.Environ(), inv.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: maxStderrTail}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", inv.Program, err)
	}

	scanErr := scanLines(stdout, onLine)
	waitErr := cmd.Wait()

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("%s: %w: %s", inv, waitErr, tail)
		}
		return fmt.Errorf("%s: %w", inv, waitErr)
	}
	if scanErr != nil {
		return fmt.Errorf("read %s output: %w", inv.Program, scanErr)
	}
	return nil
}

func scanLines(r io.Reader, onLine func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		// Дочитываем, чтобы процесс не встал на полном pipe
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

// tailBuffer хранит последние limit байт записанного.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
