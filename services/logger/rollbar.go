package logsvc

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/user"
)

// RollbarLogger writes every entry to a std logger and reports it to Rollbar when enabled.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName})
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// person extracts the Rollbar person of an argument: the logged in user.User or the audit.Actor of a request.
func person(arg interface{}) (id, name, email string, ok bool) {
	switch p := arg.(type) {
	case user.User:
		if p.ID == 0 {
			return "", "", "", false
		}
		return strconv.Itoa(p.ID), p.FullName(), p.Email, true
	case audit.Actor:
		if p.UserID == 0 {
			return "", "", "", false
		}
		return strconv.Itoa(p.UserID), p.UserName, "", true
	}
	return "", "", "", false
}

// prepare turns args into rollbar args.
// expected fmt: msg | error, *http.Request, map[string]interface{}, user.User | audit.Actor
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch arg.(type) {
		case user.User, audit.Actor:
			if id, name, email, ok := person(arg); ok && !personSet {
				rollbar.SetPerson(id, name, email)
				personSet = true
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s\n", level, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User, audit.Actor:
			if id, name, _, ok := person(a); ok {
				l.std.Printf("\tuser: %s (%s)\n", name, id)
			}
		case *http.Request:
			l.std.Printf("\trequest: %s %s\n", a.Method, a.URL.Path)
		case error:
			l.std.Printf("\t%+v\n", a)
		default:
			l.std.Println("\t" + fmt.Sprint(a))
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
