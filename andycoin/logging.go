package andycoin

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/mborders/logmatic"
)

// Logs to the terminal. Level options are: 0 fatal error (stack dump), 1 serious error (stack dump), 2 warning, 3 debug, 4 info, 5 trace (stack dump).
// Anything noisier than the configured logLevel is dropped, fatal and serious errors never are.
func LogCLI(message interface{}, level int) {
	if level > 1 && level > logThreshold() {
		return
	}
	l := logmatic.NewLogger()
	l.SetLevel(logmatic.TRACE)
	l.ExitOnFatal = true
	message = fmt.Sprint(message)
	switch level {
	case 5:
		debug.PrintStack()
		l.Trace("%v", message)
	case 4:
		l.Info("%v", message)
	case 3:
		l.Debug("%v", message)
	case 2:
		l.Warn("%v", message)
	case 1:
		debug.PrintStack()
		l.Error("%v", message)
	case 0:
		debug.PrintStack()
		l.Error("%v", message)
		if !Shutdown() {
			os.Exit(1)
		}
	}
}

// LogCommand mirrors every handled command to the terminal.
func LogCommand(command string, community CommunityID, member MemberID, args string, success bool) {
	where := "DM"
	if community != 0 {
		where = fmt.Sprint(community)
	}
	result := "success"
	if !success {
		result = "failure"
	}
	LogCLI(fmt.Sprintf("command=%s guild=%s user=%d args=[%s] result=%s", command, where, member, args, result), 4)
}

func logThreshold() int {
	if conf == nil {
		return 4
	}
	return conf.GetInt("logLevel")
}
