package nlog

func Debugf(format string, args ...any) { log(sevDbg, 0, format, args...) }
func Debugln(args ...any)               { log(sevDbg, 0, "", args...) }

func Infof(format string, args ...any) { log(sevInfo, 0, format, args...) }
func Infoln(args ...any)               { log(sevInfo, 0, "", args...) }
func InfoDepth(depth int, args ...any) { log(sevInfo, depth, "", args...) }

func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }

func Errorf(format string, args ...any) { log(sevErr, 0, format, args...) }
func Errorln(args ...any)               { log(sevErr, 0, "", args...) }
func ErrorDepth(depth int, args ...any) { log(sevErr, depth, "", args...) }
