package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/joho/godotenv"

	"adminmedia/internal/config"
	"adminmedia/render"
)

func main() {
	_ = godotenv.Load()
	configFlag := flag.String("config", os.Getenv("ADMINMEDIA_CONFIG"), "path to the YAML config file")
	cookieFlag := flag.String("cookie", "", "Cookie header to send, e.g. sessionid=...")
	flag.Parse()

	target := "http://127.0.0.1:8000/admin/"
	if flag.NArg() > 0 {
		target = flag.Arg(0)
	}
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal(err)
	}
	rc, err := cfg.Render(nil)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("fetch %s", target)
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("User-Agent", "selectordebug/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if *cookieFlag != "" {
		req.Header.Set("Cookie", *cookieFlag)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	key, err := rc.Identifier.Identify(doc, target)
	if err != nil {
		log.Fatal(err)
	}
	res, ok := rc.Table.Resolve(key)
	fmt.Printf("key=%q kind=%s routed=%v actions=%v\n", key, res.Kind, ok, res.Actions)
	for _, kind := range render.MediaKinds {
		sel := rc.Selectors.Selector(kind)
		if sel == "" {
			continue
		}
		rc.Selectors.Find(doc, kind).Each(func(i int, s *goquery.Selection) {
			fmt.Printf("%s[%d] %s %s\n", kind, i, sel, strings.TrimSpace(s.AttrOr("href", s.Text())))
		})
	}
}
