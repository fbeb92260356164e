// schedctl 排班服务运维命令行：数据库迁移、开启月度周期、导出排班版本
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
