package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"attachrename/backend/internal/config"
	"attachrename/backend/internal/domain"
	"attachrename/backend/internal/service"
)

func main() {
	// 解析命令行参数
	licType := flag.String("type", "monthly", "许可类型: monthly 或 lifetime")
	secret := flag.String("secret", "", "许可签名密钥，留空时从配置读取")
	count := flag.Int("count", 1, "生成的密钥数量")
	flag.Parse()

	var t domain.LicenseType
	switch *licType {
	case "monthly":
		t = domain.LicenseMonthly
	case "lifetime":
		t = domain.LicenseLifetime
	default:
		fmt.Printf("错误: 不支持的许可类型 '%s'\n", *licType)
		os.Exit(1)
	}

	signingSecret := *secret
	if signingSecret == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("错误: 无法加载配置: %v\n", err)
			os.Exit(1)
		}
		signingSecret = cfg.License.Secret
	}
	if signingSecret == "" {
		fmt.Println("错误: 缺少许可签名密钥，使用 -secret 或设置 ATTACHRENAME_LICENSE_SECRET")
		os.Exit(1)
	}

	for i := 0; i < *count; i++ {
		// 签发时间参与签名，逐个后移一秒保证密钥互不相同
		key, err := service.MintKey(signingSecret, t, time.Now().Add(time.Duration(i)*time.Second))
		if err != nil {
			fmt.Printf("错误: 生成密钥失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
	}
}
